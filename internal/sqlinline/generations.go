package sqlinline

const QInsertGeneration = `--sql 6a90948c-9441-4641-b5a2-aa14ac55dbd6
insert into generations (user_id, prompt, model, mode, styles, prediction_id, results)
values ($1::text, $2::text, $3::text, $4::text, coalesce($5::text[], '{}'), $6::text, $7::jsonb)
returning id::text, created_at;
`

const QSelectGenerationByID = `--sql 9731e9ba-bb8a-4785-90fe-f33a48a5e423
select id::text, user_id, prompt, model, mode, styles, prediction_id, results, created_at
from generations
where id = $1::uuid and user_id = $2::text;
`

const QListRecentGenerations = `--sql 3f7b3e30-25b2-404e-8bff-bc5acba12273
select id::text, user_id, prompt, model, mode, styles, prediction_id, results, created_at
from generations
where user_id = $1::text
order by created_at desc
limit $2::int;
`
