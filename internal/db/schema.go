package db

import "fmt"

// PassageTable holds ingested passages and their embeddings.
const PassageTable = "passage"

// SchemaSQL returns the passage schema for vectors of the given dimension.
// seq records insertion order and breaks similarity ties.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(`
    DEFINE TABLE IF NOT EXISTS passage SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON passage TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON passage TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS embedding ON passage TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS seq ON passage TYPE int;
    DEFINE FIELD IF NOT EXISTS created ON passage TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS passage_seq ON passage FIELDS seq UNIQUE;
    DEFINE INDEX IF NOT EXISTS passage_embedding ON passage FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`, dimension)
}
