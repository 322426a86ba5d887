package lifecycle_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lifekit/pkg/lifecycle"
)

const (
	kindArticle = lifecycle.Kind("article")

	stateDraft      = lifecycle.State("draft")
	stateModeration = lifecycle.State("moderation")
	statePublished  = lifecycle.State("published")

	actionSubmit  = lifecycle.Action("submit-for-review")
	actionPublish = lifecycle.Action("publish")
	actionRevert  = lifecycle.Action("revert-to-draft")
)

func articleEngine(t *testing.T, opts ...lifecycle.Option) *lifecycle.Engine {
	t.Helper()

	base := []lifecycle.Option{
		lifecycle.WithRules(
			lifecycle.Rule{Kind: kindArticle, From: stateDraft, Action: actionSubmit, To: stateModeration},
			lifecycle.Rule{Kind: kindArticle, From: stateModeration, Action: actionPublish, To: statePublished},
			lifecycle.Rule{Kind: kindArticle, From: stateModeration, Action: actionRevert, To: stateDraft},
		),
	}
	engine, err := lifecycle.New(append(base, opts...)...)
	require.NoError(t, err)
	return engine
}

func articleContext(e *lifecycle.Entity, action lifecycle.Action) lifecycle.Context {
	return lifecycle.NewContext(e.ID(), e.Kind(), action, nil)
}

func TestEngineRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("commits with empty chain", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		state, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, stateModeration, state)
		assert.Equal(t, stateModeration, article.CurrentState())
	})

	t.Run("structurally illegal move leaves state unchanged", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		_, err := engine.Request(ctx, article, actionPublish, articleContext(article, actionPublish))
		require.Error(t, err)
		assert.True(t, lifecycle.IsStructuralError(err))
		assert.Equal(t, stateDraft, article.CurrentState())
	})

	t.Run("structural rejection runs before guards", func(t *testing.T) {
		t.Parallel()
		var guardCalls atomic.Int32
		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGuard(kindArticle, actionPublish, denyGuard("AnyGuard", "never", &guardCalls)))

		// Published is terminal: the publish rule only exists from moderation.
		article := lifecycle.MustNewEntity(kindArticle, statePublished)

		_, err := engine.Request(ctx, article, actionPublish, articleContext(article, actionPublish))
		assert.True(t, lifecycle.IsStructuralError(err))
		assert.Equal(t, int32(0), guardCalls.Load(), "guards must not run for a structurally illegal move")
		assert.Equal(t, statePublished, article.CurrentState())
	})

	t.Run("guard denial leaves state unchanged", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, denyGuard("SpamGuard", "looks like spam", nil)))
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.Error(t, err)
		require.True(t, lifecycle.IsGuardDeniedError(err))

		var denied *lifecycle.GuardDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "SpamGuard", denied.Guard)
		assert.Equal(t, "looks like spam", denied.Reason)
		assert.Equal(t, stateDraft, article.CurrentState())
	})

	t.Run("guard approval commits to the table's target state", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, approveGuard("OkGuard", nil)))
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		state, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, stateModeration, state)
	})

	t.Run("global chain runs before the action chain", func(t *testing.T) {
		t.Parallel()
		var order []string
		var mu sync.Mutex
		record := func(name string, d lifecycle.Decision) lifecycle.Guard {
			return lifecycle.GuardFunc(name, func(ctx context.Context, tc lifecycle.Context) lifecycle.Decision {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return d
			})
		}

		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGlobalGuard(kindArticle, record("AuthGuard", lifecycle.Approve())))
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, record("SubmitGuard", lifecycle.Approve())))

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, []string{"AuthGuard", "SubmitGuard"}, order)
	})

	t.Run("global chain denial short-circuits the action chain", func(t *testing.T) {
		t.Parallel()
		var actionCalls atomic.Int32
		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGlobalGuard(kindArticle, denyGuard("AuthGuard", "not signed in", nil)))
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, approveGuard("SubmitGuard", &actionCalls)))

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))

		var denied *lifecycle.GuardDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "AuthGuard", denied.Guard)
		assert.Equal(t, int32(0), actionCalls.Load())
	})

	t.Run("unknown kind is structurally illegal", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		ghost := lifecycle.MustNewEntity("ghost", "limbo")

		_, err := engine.Request(ctx, ghost, actionSubmit, articleContext(ghost, actionSubmit))
		assert.True(t, lifecycle.IsStructuralError(err))
	})

	t.Run("nil entity", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)

		_, err := engine.Request(ctx, nil, actionSubmit, lifecycle.Context{})
		assert.ErrorIs(t, err, lifecycle.ErrNilEntity)
	})

	t.Run("repeat request is a fresh evaluation", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)

		// Same action again: no rule from moderation for submit-for-review,
		// and the engine holds no memory of the prior request.
		_, err = engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		assert.True(t, lifecycle.IsStructuralError(err))
		assert.Equal(t, stateModeration, article.CurrentState())
	})
}

func TestEngineCanRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine := articleEngine(t)
	require.NoError(t, engine.RegisterGuard(kindArticle, actionPublish, denyGuard("HoldGuard", "on hold", nil)))

	draft := lifecycle.MustNewEntity(kindArticle, stateDraft)
	assert.True(t, engine.CanRequest(ctx, draft, actionSubmit, articleContext(draft, actionSubmit)))
	assert.False(t, engine.CanRequest(ctx, draft, actionPublish, articleContext(draft, actionPublish)))

	inModeration := lifecycle.MustNewEntity(kindArticle, stateModeration)
	assert.False(t, engine.CanRequest(ctx, inModeration, actionPublish, articleContext(inModeration, actionPublish)))

	assert.False(t, engine.CanRequest(ctx, nil, actionSubmit, lifecycle.Context{}))
}

func TestEngineConfiguration(t *testing.T) {
	t.Parallel()

	t.Run("duplicate rule fails construction", func(t *testing.T) {
		t.Parallel()
		_, err := lifecycle.New(
			lifecycle.WithRules(
				lifecycle.Rule{Kind: kindArticle, From: stateDraft, Action: actionSubmit, To: stateModeration},
				lifecycle.Rule{Kind: kindArticle, From: stateDraft, Action: actionSubmit, To: statePublished},
			),
		)
		require.Error(t, err)
		assert.True(t, lifecycle.IsDuplicateRuleError(err))
	})

	t.Run("same pair under different kinds is fine", func(t *testing.T) {
		t.Parallel()
		_, err := lifecycle.New(
			lifecycle.WithRules(
				lifecycle.Rule{Kind: "article", From: stateDraft, Action: actionSubmit, To: stateModeration},
				lifecycle.Rule{Kind: "page", From: stateDraft, Action: actionSubmit, To: stateModeration},
			),
		)
		assert.NoError(t, err)
	})

	t.Run("MustNew panics on configuration error", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			lifecycle.MustNew(
				lifecycle.WithRules(lifecycle.Rule{Kind: "", From: stateDraft, Action: actionSubmit, To: stateModeration}),
			)
		})
	})

	t.Run("negative retries rejected", func(t *testing.T) {
		t.Parallel()
		_, err := lifecycle.New(lifecycle.WithConflictRetries(-1))
		assert.ErrorIs(t, err, lifecycle.ErrInvalidConfig)
	})

	t.Run("explicit guard position", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, approveGuard("B", nil)))
		require.NoError(t, engine.RegisterGuardAt(kindArticle, actionSubmit, approveGuard("A", nil), 0))

		err := engine.RegisterGuardAt(kindArticle, actionSubmit, approveGuard("C", nil), 9)
		var posErr *lifecycle.GuardPositionError
		assert.ErrorAs(t, err, &posErr)
	})
}

func TestEngineHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("run after commit in registration order", func(t *testing.T) {
		t.Parallel()
		var order []string
		engine := articleEngine(t,
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				order = append(order, "first")
			}),
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				order = append(order, "second")
			}),
		)

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("not run on rejection", func(t *testing.T) {
		t.Parallel()
		var hookCalls atomic.Int32
		engine := articleEngine(t,
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				hookCalls.Add(1)
			}),
		)
		require.NoError(t, engine.RegisterGuard(kindArticle, actionSubmit, denyGuard("NoGuard", "no", nil)))

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.Error(t, err)
		assert.Equal(t, int32(0), hookCalls.Load())
	})

	t.Run("panicking hook cannot roll back the commit", func(t *testing.T) {
		t.Parallel()
		var secondRan atomic.Bool
		engine := articleEngine(t,
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				panic("notification backend down")
			}),
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				secondRan.Store(true)
			}),
		)

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		state, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, stateModeration, state)
		assert.Equal(t, stateModeration, article.CurrentState())
		assert.True(t, secondRan.Load(), "remaining hooks still run after a panic")
	})

	t.Run("hook observes from and to states", func(t *testing.T) {
		t.Parallel()
		var gotFrom, gotTo lifecycle.State
		engine := articleEngine(t,
			lifecycle.WithHook(func(ctx context.Context, tc lifecycle.Context, from, to lifecycle.State) {
				gotFrom, gotTo = from, to
			}),
		)

		article := lifecycle.MustNewEntity(kindArticle, stateDraft)
		_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
		require.NoError(t, err)
		assert.Equal(t, stateDraft, gotFrom)
		assert.Equal(t, stateModeration, gotTo)
	})
}

// N concurrent requests for the same legal action from the same starting
// state: exactly one commits; the rest lose the race and either conflict or
// re-evaluate against the new state (where the rule no longer exists). The
// final state must never be corrupted or mixed.
func TestEngineConcurrentRequests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without retries", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		const n = 32
		var committed, conflicted, structural atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
				switch {
				case err == nil:
					committed.Add(1)
				case lifecycle.IsConflictError(err):
					conflicted.Add(1)
				case lifecycle.IsStructuralError(err):
					structural.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), committed.Load(), "exactly one request must commit")
		assert.Equal(t, int32(n-1), conflicted.Load()+structural.Load())
		assert.Equal(t, stateModeration, article.CurrentState())
	})

	t.Run("with retries losers re-evaluate against the new state", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t, lifecycle.WithConflictRetries(3))
		article := lifecycle.MustNewEntity(kindArticle, stateDraft)

		const n = 16
		var committed atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := engine.Request(ctx, article, actionSubmit, articleContext(article, actionSubmit))
				if err == nil {
					committed.Add(1)
					return
				}
				// After re-evaluation the move is structurally illegal from
				// moderation; a conflict is only possible once the retry
				// budget is exhausted.
				if !lifecycle.IsStructuralError(err) && !lifecycle.IsConflictError(err) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), committed.Load())
		assert.Equal(t, stateModeration, article.CurrentState())
	})

	t.Run("independent entities do not contend", func(t *testing.T) {
		t.Parallel()
		engine := articleEngine(t)

		const n = 16
		entities := make([]*lifecycle.Entity, n)
		for i := range entities {
			entities[i] = lifecycle.MustNewEntity(kindArticle, stateDraft)
		}

		var wg sync.WaitGroup
		for _, e := range entities {
			e := e
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.Request(ctx, e, actionSubmit, articleContext(e, actionSubmit))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		for _, e := range entities {
			assert.Equal(t, stateModeration, e.CurrentState())
		}
	})
}
