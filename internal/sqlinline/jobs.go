package sqlinline

const QEnqueueGenerationJob = `--sql 1a01ded9-3ec7-4cf9-a8be-fe856f0297de
insert into generation_jobs (user_id, locale, request, status)
values ($1::text, $2::text, $3::jsonb, 'queued')
returning id::text, status, created_at, updated_at;
`

// QClaimGenerationJob moves the oldest queued job to running. Concurrent
// workers never claim the same row.
const QClaimGenerationJob = `--sql 1d37dfbd-dec5-47aa-88a7-03e3d91babb1
with next_job as (
    select id
    from generation_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
)
update generation_jobs j
set status = 'running', updated_at = now()
from next_job
where j.id = next_job.id
returning j.id::text, j.user_id, j.locale, j.request, j.status, j.prediction_id,
    coalesce(j.generation_id::text, ''), j.error_message, j.created_at, j.updated_at;
`

const QSelectGenerationJob = `--sql 922e30ec-643c-4caf-80ec-29759a201093
select id::text, user_id, locale, request, status, prediction_id,
    coalesce(generation_id::text, ''), error_message, created_at, updated_at
from generation_jobs
where id = $1::uuid and user_id = $2::text;
`

const QMarkGenerationJobSubmitted = `--sql 4922c25c-afa4-4bcc-ae1d-ee4ba6d728f1
update generation_jobs
set prediction_id = $2::text, updated_at = now()
where id = $1::uuid and status = 'running';
`

const QFinishGenerationJob = `--sql 59717a50-1adb-4fc3-844c-fad88a5ff72b
update generation_jobs
set status = $2::text,
    generation_id = nullif($3::text, '')::uuid,
    error_message = $4::text,
    updated_at = now()
where id = $1::uuid and status = 'running';
`

// QFailStaleGenerationJobs fails running jobs whose worker stopped updating them.
const QFailStaleGenerationJobs = `--sql cbe67106-3c70-40fb-b2d6-e45c34c440df
update generation_jobs
set status = 'failed', error_message = $2::text, updated_at = now()
where status = 'running'
  and updated_at < now() - make_interval(secs => $1::double precision);
`
