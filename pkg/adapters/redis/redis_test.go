package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/redis"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisWorldModel_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunWorldModelContract(t, redis.NewFromClient(client))
}

func TestRedisWorldModel_Layout(t *testing.T) {
	mr, client := newClient(t)
	wm := redis.NewFromClient(client, redis.WithPrefix("lab:"))
	ctx := context.Background()

	require.NoError(t, wm.Set(ctx, "door", "open"))
	assert.True(t, mr.Exists("lab:wm:door"))
	got, err := mr.Get("lab:wm:door")
	require.NoError(t, err)
	assert.JSONEq(t, `"open"`, got)

	members, err := mr.ZMembers("lab:wm:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"door"}, members)
}

func TestRedisWorldModel_TTL(t *testing.T) {
	mr, client := newClient(t)
	wm := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, wm.Set(ctx, "pose", []any{1.0, 2.0}))
	assert.Equal(t, time.Second, mr.TTL("skiros:wm:pose"))

	v, err := wm.Get(ctx, "pose")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, v)

	mr.FastForward(2 * time.Second)
	_, err = wm.Get(ctx, "pose")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "agents", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:agents"), "lock key should be set")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:agents"), "lock key should be removed")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := first.Lock(ctx, "agents", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "agents", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	unlock2, err := second.Lock(ctx, "agents", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:agents"))
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "agents", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "agents", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:lock:agents"), "an expired owner must not release the new lock")
	require.NoError(t, fresh(ctx))
}

func progressEvent(taskID int, st domain.RunState, code int) domain.ProgressEvent {
	return domain.ProgressEvent{
		TaskID: taskID,
		Agent:  "robot",
		Time:   time.Now().UTC(),
		Snapshot: domain.Snapshot{{
			ID: 0,
			Description: domain.Description{
				Type:     "Root",
				Label:    "task_0",
				State:    st,
				ParentID: -1,
				Code:     code,
			},
		}},
	}
}

func TestRedisPublisher_PublishAndLast(t *testing.T) {
	_, client := newClient(t)
	pub := redis.NewPublisher(client)
	ctx := context.Background()

	sub, err := pub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, progressEvent(0, domain.StateRunning, 0)))
	require.NoError(t, pub.Publish(ctx, progressEvent(0, domain.StateSuccess, 1)))

	select {
	case ev := <-sub:
		root, ok := ev.Snapshot.Root()
		require.True(t, ok)
		assert.Equal(t, domain.StateRunning, root.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, pub.Close())
	last, err := pub.Last(ctx, 0)
	require.NoError(t, err)
	assert.True(t, last.Done())
	assert.Equal(t, "robot", last.Agent)

	_, err = pub.Last(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestRedisPublisher_Closed(t *testing.T) {
	_, client := newClient(t)
	pub := redis.NewPublisher(client, redis.WithChannel("lab:monitor"), redis.WithQueueSize(4))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close(), "closing twice is fine")

	err := pub.Publish(context.Background(), progressEvent(0, domain.StateRunning, 0))
	assert.ErrorIs(t, err, redis.ErrPublisherClosed)
}
