package grants

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/inkstream-blog/inkstream/internal/shared"
)

// Engine implements per-object capability management on top of a Store.
//
// Authorization denial is a normal false/empty result, never an error.
// Errors are reserved for storage failures. The admin short-circuit lives
// here and only here; callers must not reimplement it.
type Engine struct {
	store  Store
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewEngine constructs an Engine. The audit logger may be nil.
func NewEngine(store Store, audit *shared.AuditLogger, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, audit: audit, logger: logger}
}

func (e *Engine) principalRef(p shared.Principal) PrincipalRef {
	kind := p.Kind
	if kind == "" {
		kind = shared.PrincipalUser
	}
	return PrincipalRef{ID: p.ID, Kind: kind}
}

// Grant idempotently records a capability for the principal on the object.
// Returns false without error on malformed input (anonymous principal,
// unsaved object, empty capability).
func (e *Engine) Grant(ctx context.Context, p shared.Principal, capability string, obj ObjectRef) (bool, error) {
	if p.IsAnonymous() || capability == "" || !obj.Valid() {
		e.logger.Warn("grant rejected",
			slog.Int64("principal", p.ID),
			slog.String("capability", capability),
			slog.String("object_type", obj.Type),
			slog.Int64("object_id", obj.ID))
		return false, nil
	}
	if err := e.store.Upsert(ctx, Grant{Principal: e.principalRef(p), Capability: capability, Object: obj}); err != nil {
		return false, err
	}
	e.recordAudit(ctx, p.ID, "grant", capability, obj)
	return true, nil
}

// Revoke removes a capability from the principal on the object. Revoking a
// grant that does not exist is a success.
func (e *Engine) Revoke(ctx context.Context, p shared.Principal, capability string, obj ObjectRef) (bool, error) {
	if p.IsAnonymous() || capability == "" || !obj.Valid() {
		return false, nil
	}
	if err := e.store.Delete(ctx, Grant{Principal: e.principalRef(p), Capability: capability, Object: obj}); err != nil {
		return false, err
	}
	e.recordAudit(ctx, p.ID, "revoke", capability, obj)
	return true, nil
}

// Check reports whether the principal holds the capability on the object.
// Unauthenticated principals always fail; admins always pass. Object
// ownership is deliberately not consulted here, callers combine Check with
// an explicit author comparison where owners get implicit rights.
func (e *Engine) Check(ctx context.Context, p shared.Principal, capability string, obj ObjectRef) (bool, error) {
	if p.IsAnonymous() {
		return false, nil
	}
	if p.IsAdmin {
		return true, nil
	}
	if capability == "" || !obj.Valid() {
		return false, nil
	}
	caps, err := e.store.Capabilities(ctx, e.principalRef(p), obj)
	if err != nil {
		return false, err
	}
	for _, c := range caps {
		if c == capability {
			return true, nil
		}
	}
	for _, gid := range p.GroupIDs {
		caps, err := e.store.Capabilities(ctx, PrincipalRef{ID: gid, Kind: shared.PrincipalGroup}, obj)
		if err != nil {
			return false, err
		}
		for _, c := range caps {
			if c == capability {
				return true, nil
			}
		}
	}
	return false, nil
}

// ListCapabilities returns every capability the principal holds on the
// object, directly or through group membership. Empty for unauthenticated
// principals, never an error.
func (e *Engine) ListCapabilities(ctx context.Context, p shared.Principal, obj ObjectRef) ([]string, error) {
	if p.IsAnonymous() || !obj.Valid() {
		return []string{}, nil
	}
	seen := make(map[string]struct{})
	caps, err := e.store.Capabilities(ctx, e.principalRef(p), obj)
	if err != nil {
		return nil, err
	}
	for _, c := range caps {
		seen[c] = struct{}{}
	}
	for _, gid := range p.GroupIDs {
		caps, err := e.store.Capabilities(ctx, PrincipalRef{ID: gid, Kind: shared.PrincipalGroup}, obj)
		if err != nil {
			return nil, err
		}
		for _, c := range caps {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// ListPrincipalsWithCapability returns every principal holding the
// capability on the object.
func (e *Engine) ListPrincipalsWithCapability(ctx context.Context, capability string, obj ObjectRef) ([]PrincipalRef, error) {
	if capability == "" || !obj.Valid() {
		return []PrincipalRef{}, nil
	}
	return e.store.PrincipalsWithCapability(ctx, capability, obj)
}

// BulkGrant attempts every grant and returns true only if all succeeded.
// Best-effort: earlier grants are not rolled back when a later one is
// rejected.
func (e *Engine) BulkGrant(ctx context.Context, p shared.Principal, capabilities []string, obj ObjectRef) (bool, error) {
	allOK := true
	for _, capability := range capabilities {
		ok, err := e.Grant(ctx, p, capability, obj)
		if err != nil {
			return false, err
		}
		if !ok {
			allOK = false
		}
	}
	return allOK, nil
}

// BulkRevoke attempts every revoke and returns true only if all succeeded.
// Same non-atomic contract as BulkGrant.
func (e *Engine) BulkRevoke(ctx context.Context, p shared.Principal, capabilities []string, obj ObjectRef) (bool, error) {
	allOK := true
	for _, capability := range capabilities {
		ok, err := e.Revoke(ctx, p, capability, obj)
		if err != nil {
			return false, err
		}
		if !ok {
			allOK = false
		}
	}
	return allOK, nil
}

// TransferOwnership moves capabilities on the object from one principal to
// another. With an empty capability list the full set currently held by
// from is transferred. The revoke phase only runs after every grant
// succeeded, so a failed transfer never strips the original holder.
func (e *Engine) TransferOwnership(ctx context.Context, from, to shared.Principal, obj ObjectRef, capabilities []string) (bool, error) {
	if from.IsAnonymous() || to.IsAnonymous() || !obj.Valid() {
		return false, nil
	}
	if len(capabilities) == 0 {
		snapshot, err := e.ListCapabilities(ctx, from, obj)
		if err != nil {
			return false, err
		}
		capabilities = snapshot
	}
	if len(capabilities) == 0 {
		return true, nil
	}
	granted, err := e.BulkGrant(ctx, to, capabilities, obj)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}
	revoked, err := e.BulkRevoke(ctx, from, capabilities, obj)
	if err != nil {
		return false, err
	}
	if revoked {
		e.logger.Info("ownership transferred",
			slog.Int64("from", from.ID),
			slog.Int64("to", to.ID),
			slog.String("object_type", obj.Type),
			slog.Int64("object_id", obj.ID),
			slog.Int("capabilities", len(capabilities)))
	}
	return revoked, nil
}

// CleanupObject deletes every grant referencing the object regardless of
// principal. Called exactly once as part of object deletion.
func (e *Engine) CleanupObject(ctx context.Context, obj ObjectRef) (bool, error) {
	if !obj.Valid() {
		return false, nil
	}
	if err := e.store.DeleteByObject(ctx, obj); err != nil {
		return false, err
	}
	e.recordAudit(ctx, 0, "cleanup", "", obj)
	return true, nil
}

// AssignArticleAuthor grants the full article capability set to the author.
func (e *Engine) AssignArticleAuthor(ctx context.Context, p shared.Principal, articleID int64) (bool, error) {
	return e.BulkGrant(ctx, p, ArticleCapabilities(), ArticleRef(articleID))
}

// AssignArticleEditor grants the co-editor subset on an article.
func (e *Engine) AssignArticleEditor(ctx context.Context, p shared.Principal, articleID int64) (bool, error) {
	return e.BulkGrant(ctx, p, ArticleEditorCapabilities(), ArticleRef(articleID))
}

// AssignCommentAuthor grants the author subset on a comment. The author
// never receives moderate: nobody approves their own comment.
func (e *Engine) AssignCommentAuthor(ctx context.Context, p shared.Principal, commentID int64) (bool, error) {
	return e.BulkGrant(ctx, p, CommentAuthorCapabilities(), CommentRef(commentID))
}

// AssignCommentModerator grants the full comment capability set.
func (e *Engine) AssignCommentModerator(ctx context.Context, p shared.Principal, commentID int64) (bool, error) {
	return e.BulkGrant(ctx, p, CommentCapabilities(), CommentRef(commentID))
}

func (e *Engine) recordAudit(ctx context.Context, actorID int64, action, capability string, obj ObjectRef) {
	if e.audit == nil {
		return
	}
	meta := map[string]any{"object_type": obj.Type}
	if capability != "" {
		meta["capability"] = capability
	}
	err := e.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "grants." + action,
		Entity:   obj.Type,
		EntityID: strconv.FormatInt(obj.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		e.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
