package postgresql

// migrations returns the schema migrations, keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS conversations (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE TABLE IF NOT EXISTS conversation_turns (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id),
				role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
				content TEXT NOT NULL,
				summary BOOLEAN NOT NULL DEFAULT FALSE,
				tools_retrieved JSONB,
				similarity_scores JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_conversation_turns_conversation
				ON conversation_turns(conversation_id, created_at);

			CREATE TABLE IF NOT EXISTS workflow_versions (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id),
				version INTEGER NOT NULL CHECK (version >= 1),
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (conversation_id, version)
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_versions_conversation
				ON workflow_versions(conversation_id, version);
		`,
	}
}
