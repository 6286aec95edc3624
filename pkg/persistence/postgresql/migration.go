package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE pipelines (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				emails_for_notifications TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT 'idle'
					CHECK (status IN ('idle', 'running', 'stopping', 'succeeded', 'failed', 'finished')),
				status_changed_at TIMESTAMP WITH TIME ZONE,
				run_on_schedule BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_pipelines_status ON pipelines(status);

			-- Children are removed by the application in order: schedules, jobs, params, pipeline.
			CREATE TABLE jobs (
				id VARCHAR(255) PRIMARY KEY,
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id),
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'idle'
					CHECK (status IN ('idle', 'waiting', 'running', 'stopping', 'succeeded', 'failed')),
				status_changed_at TIMESTAMP WITH TIME ZONE,
				worker_class VARCHAR(255) NOT NULL,
				enqueued_workers_count INTEGER NOT NULL DEFAULT 0 CHECK (enqueued_workers_count >= 0),
				succeeded_workers_count INTEGER NOT NULL DEFAULT 0 CHECK (succeeded_workers_count >= 0),
				failed_workers_count INTEGER NOT NULL DEFAULT 0 CHECK (failed_workers_count >= 0),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_jobs_pipeline_id ON jobs(pipeline_id);
			CREATE INDEX idx_jobs_status ON jobs(status);

			CREATE TABLE params (
				id VARCHAR(255) PRIMARY KEY,
				pipeline_id VARCHAR(255) REFERENCES pipelines(id),
				job_id VARCHAR(255) REFERENCES jobs(id),
				name VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL
					CHECK (type IN ('string', 'number', 'boolean', 'string_list', 'number_list')),
				value TEXT NOT NULL DEFAULT '',
				label VARCHAR(255) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				is_required BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				CHECK (pipeline_id IS NULL OR job_id IS NULL)
			);

			CREATE INDEX idx_params_pipeline_id ON params(pipeline_id);
			CREATE INDEX idx_params_job_id ON params(job_id);

			CREATE TABLE start_conditions (
				id VARCHAR(255) PRIMARY KEY,
				job_id VARCHAR(255) NOT NULL REFERENCES jobs(id),
				preceding_job_id VARCHAR(255) NOT NULL REFERENCES jobs(id),
				condition VARCHAR(50) NOT NULL CHECK (condition IN ('success', 'fail', 'whatever')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (job_id, preceding_job_id),
				CHECK (job_id <> preceding_job_id)
			);

			CREATE INDEX idx_start_conditions_preceding_job_id ON start_conditions(preceding_job_id);

			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id),
				cron VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_pipeline_id ON schedules(pipeline_id);
		`,
	}
}
