// Package version хранит сведения о сборке, которые подставляются через -ldflags.
package version

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита сборки.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// Resolve возвращает версию для отчётов сервиса: APP_VERSION имеет приоритет над ldflags.
func Resolve(appVersion string) string {
	if appVersion != "" {
		return appVersion
	}
	return version
}
