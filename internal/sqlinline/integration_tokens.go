package sqlinline

// QSelectPredictionToken reads the stored API token for a provider.
const QSelectPredictionToken = `--sql 3544a796-ac9f-4029-a4af-d8e1ee1cfbb9
select token
from integration_tokens
where provider = $1::text
limit 1;
`

// QUpsertPredictionToken stores or rotates a provider token. Properties are
// merged into the existing document.
const QUpsertPredictionToken = `--sql 52182f38-ed8f-49f1-9515-21415110ebb4
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
