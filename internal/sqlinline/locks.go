package sqlinline

const QAdvisoryLock = `--sql 0c6af3f3-a52e-4cde-bd6e-cb17d4c32243
select pg_advisory_lock(hashtext($1::text));
`

const QAdvisoryUnlock = `--sql 47e4e54a-28c6-41b8-ae54-d47a5e3af6d5
select pg_advisory_unlock(hashtext($1::text));
`
