package storage

import (
	"context"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/rl1809/velocity/internal/core/domain"
)

const (
	ownerKeyPrefix = "owner:"
	ownerIndexKey  = "owners"
)

// saveOwnerScript writes the owner hash only when ARGV[1] (revision) is newer
// than the stored one. Returns 1 when written, 0 when stale.
var saveOwnerScript = redis.NewScript(`
local key = KEYS[1]
local index = KEYS[2]
local revision = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'revision')
if current and tonumber(current) >= revision then
	return 0
end

redis.call('HSET', key,
	'revision', ARGV[1],
	'company_id', ARGV[2],
	'name', ARGV[3],
	'percentage', ARGV[4])
redis.call('SADD', index, ARGV[5])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SaveOwner(ctx context.Context, change domain.OwnerChange) error {
	o := change.Owner
	id := o.ID.String()

	err := saveOwnerScript.Run(ctx, r.client,
		[]string{ownerKeyPrefix + id, ownerIndexKey},
		strconv.FormatUint(change.Revision, 10),
		o.CompanyID.String(),
		o.Name,
		strconv.FormatFloat(o.Percentage, 'g', -1, 64),
		id,
	).Err()
	if err != nil {
		return oops.In("redis").
			With("owner_id", id, "revision", change.Revision).
			Wrapf(err, "save owner")
	}

	return nil
}

func (r *RedisAdapter) LoadOwners(ctx context.Context) ([]domain.OwnerChange, error) {
	ids, err := r.client.SMembers(ctx, ownerIndexKey).Result()
	if err != nil {
		return nil, oops.In("redis").Wrapf(err, "list owner ids")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, ownerKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, oops.In("redis").Wrapf(err, "load owners")
	}

	changes := make([]domain.OwnerChange, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		c, err := changeFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Revision < changes[j].Revision
	})
	return changes, nil
}

func changeFromHash(id string, fields map[string]string) (domain.OwnerChange, error) {
	var (
		c   domain.OwnerChange
		err error
	)

	if c.Owner.ID, err = uuid.Parse(id); err != nil {
		return c, oops.In("redis").With("id", id).Wrapf(err, "parse owner id")
	}
	if c.Owner.CompanyID, err = uuid.Parse(fields["company_id"]); err != nil {
		return c, oops.In("redis").With("id", id).Wrapf(err, "parse company id")
	}
	if c.Owner.Percentage, err = strconv.ParseFloat(fields["percentage"], 64); err != nil {
		return c, oops.In("redis").With("id", id).Wrapf(err, "parse percentage")
	}
	if c.Revision, err = strconv.ParseUint(fields["revision"], 10, 64); err != nil {
		return c, oops.In("redis").With("id", id).Wrapf(err, "parse revision")
	}
	c.Owner.Name = fields["name"]

	return c, nil
}
