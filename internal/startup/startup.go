package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"image-library/internal/logging"

	"github.com/caarlos0/env/v6"
	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// DescriptionsFileName is the index file used when DESCRIPTIONS_FILE is unset.
const DescriptionsFileName = ".descriptions.db"

// ErrInvalidConfig is wrapped by every validation failure in LoadConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	LibraryDir       string        `env:"LIBRARY_DIR" envDefault:"/library"`
	DescriptionsFile string        `env:"DESCRIPTIONS_FILE"`
	Port             string        `env:"PORT" envDefault:"8080"`
	MetricsEnabled   bool          `env:"METRICS_ENABLED" envDefault:"true"`
	VipsEnabled      bool          `env:"VIPS_ENABLED" envDefault:"false"`
	JPEGQuality      int           `env:"JPEG_QUALITY" envDefault:"90"`
	MinCropSize      float64       `env:"MIN_CROP_SIZE" envDefault:"10"`
	FitWidth         int           `env:"FIT_WIDTH" envDefault:"500"`
	FitHeight        int           `env:"FIT_HEIGHT" envDefault:"400"`
	LogRequests      bool          `env:"LOG_REQUESTS" envDefault:"true"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	StatsInterval    time.Duration `env:"STATS_INTERVAL" envDefault:"30s"`
	MemoryLimit      int64         `env:"MEMORY_LIMIT"`
	MemoryRatio      float64       `env:"MEMORY_RATIO" envDefault:"0.85"`
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := parseConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  LIBRARY_DIR:         %s", config.LibraryDir)
	logging.Info("  DESCRIPTIONS_FILE:   %s", config.DescriptionsFile)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  VIPS_ENABLED:        %v", config.VipsEnabled)
	logging.Info("  JPEG_QUALITY:        %d", config.JPEGQuality)
	logging.Info("  MIN_CROP_SIZE:       %g", config.MinCropSize)
	logging.Info("  FIT_WIDTH/HEIGHT:    %dx%d", config.FitWidth, config.FitHeight)
	logging.Info("  LOG_REQUESTS:        %v", config.LogRequests)
	logging.Info("  MEMORY_LIMIT:        %d", config.MemoryLimit)
	logging.Info("  MEMORY_RATIO:        %.2f", config.MemoryRatio)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	// The library is mounted, never created.
	if err := checkDirectory(config.LibraryDir, "library"); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}

	descDir := filepath.Dir(config.DescriptionsFile)
	if err := ensureDirectory(descDir, "descriptions"); err != nil {
		return nil, fmt.Errorf("descriptions directory error: %w", err)
	}
	logging.Debug("  Testing descriptions directory write access...")
	if err := testWriteAccess(descDir); err != nil {
		logging.Warn("  Descriptions directory is not writable: %v", err)
		logging.Warn("  Descriptions will not survive a restart")
	} else {
		logging.Info("  [OK] Descriptions directory is writable")
	}

	return config, nil
}

// parseConfig reads the environment, validates values and resolves paths.
func parseConfig() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return nil, fmt.Errorf("%w: JPEG_QUALITY must be 1-100, got %d", ErrInvalidConfig, config.JPEGQuality)
	}
	if config.MinCropSize <= 0 {
		return nil, fmt.Errorf("%w: MIN_CROP_SIZE must be positive, got %g", ErrInvalidConfig, config.MinCropSize)
	}
	if config.FitWidth <= 0 || config.FitHeight <= 0 {
		return nil, fmt.Errorf("%w: FIT_WIDTH and FIT_HEIGHT must be positive", ErrInvalidConfig)
	}
	if config.MemoryLimit < 0 {
		return nil, fmt.Errorf("%w: MEMORY_LIMIT must not be negative", ErrInvalidConfig)
	}
	if config.MemoryRatio <= 0 || config.MemoryRatio > 1 {
		return nil, fmt.Errorf("%w: MEMORY_RATIO must be in (0, 1], got %g", ErrInvalidConfig, config.MemoryRatio)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	libraryDir, err := filepath.Abs(config.LibraryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library directory path: %w", err)
	}
	config.LibraryDir = libraryDir

	if config.DescriptionsFile == "" {
		config.DescriptionsFile = filepath.Join(libraryDir, DescriptionsFileName)
	}
	descFile, err := filepath.Abs(config.DescriptionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptions file path: %w", err)
	}
	config.DescriptionsFile = descFile

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogCodecInit logs which decoder serves image loads.
func LogCodecInit(name string, vipsRequested, vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if vipsRequested && !vipsAvailable {
		logging.Warn("  libvips requested but unavailable, using pure Go decoding")
	}
	logging.Info("  libvips: %s", enabledString(vipsAvailable))
	logging.Info("  [OK] Using %s codec", name)
}

// LogDescriptionsInit logs the description index load.
func LogDescriptionsInit(path string, entries int, duration time.Duration, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DESCRIPTION INDEX")
	logging.Info("------------------------------------------------------------")
	logging.Info("  File: %s", path)
	if err != nil {
		logging.Warn("  Failed to load descriptions: %v", err)
		logging.Warn("  Starting with an empty index; the file is re-read before it is saved")
		return
	}
	logging.Info("  [OK] Loaded %d descriptions in %v", entries, duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logRequests bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	if logRequests {
		logging.Info("  Request logging: ON")
	} else {
		logging.Info("  Request logging: OFF (set LOG_REQUESTS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____                              __    _ __
   /  _/___ ___  ____ _____ ____     / /   (_) /_  _________ ________  __
   / // __ '__ \/ __ '/ __ '/ _ \   / /   / / __ \/ ___/ __ '/ ___/ / / /
 _/ // / / / / / /_/ / /_/ /  __/  / /___/ / /_/ / /  / /_/ / /  / /_/ /
/___/_/ /_/ /_/\__,_/\__, /\___/  /_____/_/_.___/_/   \__,_/_/   \__, /
                    /____/                                      /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func checkDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Info("  [OK] %s directory: %s", name, path)
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
