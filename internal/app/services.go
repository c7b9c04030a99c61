package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/inkstream-blog/inkstream/internal/articles"
	"github.com/inkstream-blog/inkstream/internal/comments"
	"github.com/inkstream-blog/inkstream/internal/counter"
	"github.com/inkstream-blog/inkstream/internal/grants"
	"github.com/inkstream-blog/inkstream/internal/moderation"
	"github.com/inkstream-blog/inkstream/internal/shared"
	"github.com/inkstream-blog/inkstream/internal/users"
	"github.com/inkstream-blog/inkstream/internal/visibility"
)

// Services is the composed application graph. Every transport (worker,
// future HTTP layer, seed tooling) builds exactly one of these.
type Services struct {
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	GrantRepo   *grants.Repository
	Engine      *grants.Engine
	Policy      *visibility.Policy
	Filter      *moderation.Filter
	Counter     *counter.Service
	Articles    *articles.Service
	Comments    *comments.Service
	Users       *users.Service
}

// articleDirectory adapts the articles repository to the lookup the comments
// service needs, keeping the two packages decoupled.
type articleDirectory struct {
	repo articles.Repository
}

func (d articleDirectory) Find(ctx context.Context, articleID int64) (visibility.Article, error) {
	a, err := d.repo.Get(ctx, articleID)
	if err != nil {
		return visibility.Article{}, err
	}
	return visibility.Article{ID: a.ID, AuthorID: a.AuthorID, Published: a.Published()}, nil
}

// BuildServices wires the full service graph over the given connections.
func BuildServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) *Services {
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	grantRepo := grants.NewRepository(pool)
	engine := grants.NewEngine(grantRepo, auditLogger, logger)
	policy := visibility.NewPolicy(engine)

	filter := moderation.NewFilter(moderation.Config{
		MinLength: cfg.CommentMinLength,
		MaxLength: cfg.CommentMaxLength,
		MaskToken: cfg.MaskToken,
		Terms:     cfg.BlockedTerms,
	})

	articleRepo := articles.NewSQLRepository(pool)
	counterCache := counter.NewCache(redisClient, counter.TTLs{
		Detail:  cfg.DetailCacheTTL,
		List:    cfg.ListCacheTTL,
		HotList: cfg.HotListCacheTTL,
	})
	counterService := counter.NewService(articleRepo, counterCache, logger)

	commentRepo := comments.NewSQLRepository(pool)
	commentService := comments.NewService(commentRepo, articleDirectory{repo: articleRepo}, engine, filter, policy, idempotencyStore, auditLogger, logger)
	articleService := articles.NewService(articleRepo, engine, policy, counterService, commentService, logger)

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo, logger)

	return &Services{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		GrantRepo:   grantRepo,
		Engine:      engine,
		Policy:      policy,
		Filter:      filter,
		Counter:     counterService,
		Articles:    articleService,
		Comments:    commentService,
		Users:       userService,
	}
}
