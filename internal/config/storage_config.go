package config

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendRedis    = "redis"
)

type StorageConfig interface {
	GetAdminStore() string
	GetDatabaseURL() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetTabStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSeedAdmins() []string
}

type Storage struct {
	AdminStore    string `yaml:"admin_store" env:"ADMIN_STORE" env-default:"memory"`
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL"`
	SupabaseURL   string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseKey   string `yaml:"supabase_key" env:"SUPABASE_KEY"`
	TabStore      string `yaml:"tab_store" env:"TAB_STORE" env-default:"memory"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	// SeedAdmins are provider ids registered as active admins in the memory store.
	SeedAdmins []string `yaml:"seed_admins" env:"ADMIN_SEED_IDS" env-separator:","`
}

var _ StorageConfig = Storage{}

func (s Storage) GetAdminStore() string {
	return s.AdminStore
}

func (s Storage) GetDatabaseURL() string {
	return s.DatabaseURL
}

func (s Storage) GetSupabaseURL() string {
	return s.SupabaseURL
}

func (s Storage) GetSupabaseKey() string {
	return s.SupabaseKey
}

func (s Storage) GetTabStore() string {
	return s.TabStore
}

func (s Storage) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Storage) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Storage) GetRedisDB() int {
	return s.RedisDB
}

func (s Storage) GetSeedAdmins() []string {
	return s.SeedAdmins
}
