package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CHAT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chat SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON chat TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON chat TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON chat TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chat_user ON chat FIELDS user_id;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    -- Content parts are stored as their JSON encoding so tool args and
    -- results round-trip byte for byte.
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS chat_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant", "tool", "system"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime;

    DEFINE INDEX IF NOT EXISTS message_chat ON message FIELDS chat_id, created_at;

    -- ==========================================================================
    -- VOTE TABLE
    -- ==========================================================================
    -- Record id is [chat_id, message_id] so UPSERT keeps one vote per pair.
    DEFINE TABLE IF NOT EXISTS vote SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS chat_id ON vote TYPE string;
    DEFINE FIELD IF NOT EXISTS message_id ON vote TYPE string;
    DEFINE FIELD IF NOT EXISTS is_upvoted ON vote TYPE bool;

    DEFINE INDEX IF NOT EXISTS vote_chat ON vote FIELDS chat_id;

    -- ==========================================================================
    -- DOCUMENT TABLE (one row per version)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS doc_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON document TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_version ON document FIELDS doc_id, created_at UNIQUE;

    -- ==========================================================================
    -- SUGGESTION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS suggestion SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS document_id ON suggestion TYPE string;
    DEFINE FIELD IF NOT EXISTS document_created_at ON suggestion TYPE datetime;
    DEFINE FIELD IF NOT EXISTS original_text ON suggestion TYPE string;
    DEFINE FIELD IF NOT EXISTS suggested_text ON suggestion TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON suggestion TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS is_resolved ON suggestion TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS user_id ON suggestion TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON suggestion TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS suggestion_document ON suggestion FIELDS document_id;
`
