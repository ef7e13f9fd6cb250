package httpx

type ctxKey string

// CtxKeyUserID carries the authenticated account ID (decimal string) for
// per-user rate limiting.
const CtxKeyUserID ctxKey = "user_id"
