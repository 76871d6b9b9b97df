package sqlinline

const QInsertNotification = `--sql be686589-2f26-4492-b9c3-224972a91651
insert into notifications (user_id, type, message)
values ($1::text, $2::text, $3::text)
returning id::text, read, created_at;
`

const QListNotifications = `--sql d62f488c-5a05-4e9f-9059-da3f6f4c2e8f
select id::text, user_id, type, message, read, created_at
from notifications
where user_id = $1::text
  and ($2::boolean = false or read = false)
order by created_at desc
limit $3::int;
`

const QMarkNotificationsRead = `--sql f49e8dae-039a-4bd0-8395-adbac503891d
update notifications
set read = true
where user_id = $1::text and read = false;
`
