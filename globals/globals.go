package globals

// JwtSecret verifies Supabase access tokens (HS256). It is set from
// SUPABASE_JWT_SECRET at startup.
var JwtSecret []byte

// Context keys
type ContextKey string

const UserIDKey ContextKey = "userId"
