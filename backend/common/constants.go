package common

import (
	"flag"
	"fmt"
	"time"
)

var Version = "v0.0.0"

var (
	Port          = flag.Int("port", 0, "the listening port, overrides config.ini when set")
	DataDir       = flag.String("data-dir", "data", "directory holding the database, key, certificate and config files")
	LogDir        = flag.String("log-dir", "logs", "specify the log directory")
	WebDir        = flag.String("web-dir", "wwwroot", "directory of the single page application bundle")
	PrintVersion  = flag.Bool("version", false, "print version and exit")
	PrintHelpFlag = flag.Bool("help", false, "print help and exit")
)

// Environment overrides, see LoadEnv.
var (
	SQLDSN        = ""
	SessionSecret = ""
	CORSOrigins   = ""
)

const (
	DatabaseFileName    = "sqlite.db"
	KeyFileName         = "aes-key.bin"
	CertificateFileName = "server.pfx"
	ConfigFileName      = "config.ini"
)

const (
	DateTimeLayout  = "2006-01-02 15:04:05"
	SessionName     = "quickshare"
	SessionLifetime = 12 * time.Hour
	PresenceWindow  = 15 * time.Second
	LogRetention    = 3 * 24 * time.Hour
)

func PrintHelp() {
	fmt.Println("QuickShare " + Version + " - share local files over HTTPS")
	fmt.Println("Usage: quickshare [--port <port>] [--data-dir <dir>] [--log-dir <dir>] [--web-dir <dir>] [file ...]")
	fmt.Println("Files given as arguments are published as a new share on startup.")
	flag.PrintDefaults()
}
