package postgresql

// migrations returns the versioned schema for the automation engine. The
// partial index on workflows serves the matcher's hot path; the composite
// index on execution_logs serves the scheduler's due-entry scan.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT FALSE,
				trigger_type TEXT NOT NULL,
				trigger_conditions JSONB NOT NULL DEFAULT '[]'::jsonb,
				steps JSONB NOT NULL DEFAULT '[]'::jsonb,
				business_hours JSONB,
				execution_count BIGINT NOT NULL DEFAULT 0,
				success_count BIGINT NOT NULL DEFAULT 0,
				failure_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_tenant_trigger
				ON workflows (tenant_id, trigger_type, created_at)
				WHERE active AND deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS execution_logs (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				tenant_id TEXT NOT NULL,
				trigger_type TEXT NOT NULL,
				trigger_payload JSONB NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				attempt_count INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				next_attempt_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT NOT NULL DEFAULT '',
				actions_executed JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_due
				ON execution_logs (status, next_attempt_at, created_at);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_tenant
				ON execution_logs (tenant_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_workflow
				ON execution_logs (workflow_id, created_at DESC);
		`,
	}
}
