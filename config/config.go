package config

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Protocol constants from spec.md §6. These are fixed properties of the
// upstream chunk protocol and the URL grammar, not environment-tunable.
const (
	SecureHashLength = 6
	ChunkSize        = 1024 * 1024 // 1 MiB
)

const (
	defaultDev                 bool   = false
	defaultLogLevel            string = "info"
	defaultPort                int    = 8080
	defaultStatusPort          int    = 9090
	defaultHost                string = ""
	defaultUseSessionFile      bool   = true
	defaultUsePublicIP         bool   = false
	defaultSleepThreshold      int    = 10
	defaultMaxConcurrentClient int    = 100
	defaultWorkerStartTimeoutS int    = 20
)

var ValueOf = &config{
	Dev:                       defaultDev,
	LogLevel:                  defaultLogLevel,
	Port:                      defaultPort,
	StatusPort:                defaultStatusPort,
	Host:                      defaultHost,
	UseSessionFile:            defaultUseSessionFile,
	UsePublicIP:               defaultUsePublicIP,
	SleepThreshold:            defaultSleepThreshold,
	MaxConcurrentPerClient:    defaultMaxConcurrentClient,
	WorkerStartTimeoutSeconds: defaultWorkerStartTimeoutS,
}

// MultiTokens maps small positive session IDs (starting at 1) to bot
// tokens, parsed from MULTI_TOKEN1, MULTI_TOKEN2, ... env vars.
type MultiTokens map[int]string

type config struct {
	ApiID         int32  `envconfig:"API_ID" required:"true"`
	ApiHash       string `envconfig:"API_HASH" required:"true"`
	BotToken      string `envconfig:"BOT_TOKEN" required:"true"`
	BinChannel    int64  `envconfig:"BIN_CHANNEL" required:"true"`
	StringSession string `envconfig:"STRING_SESSION"`

	Dev                       bool   `envconfig:"DEV" default:"false"`
	LogLevel                  string `envconfig:"LOG_LEVEL" default:"info"`
	Port                      int    `envconfig:"PORT" default:"8080"`
	StatusPort                int    `envconfig:"STATUS_PORT" default:"9090"`
	Host                      string `envconfig:"HOST" default:""`
	UseSessionFile            bool   `envconfig:"USE_SESSION_FILE" default:"true"`
	UsePublicIP               bool   `envconfig:"USE_PUBLIC_IP" default:"false"`
	SleepThreshold            int    `envconfig:"SLEEP_THRESHOLD" default:"10"`
	MaxConcurrentPerClient    int    `envconfig:"MAX_CONCURRENT_PER_CLIENT" default:"100"`
	WorkerStartTimeoutSeconds int    `envconfig:"WORKER_START_TIMEOUT_SECONDS" default:"20"`

	MultiTokens MultiTokens
}

var multiTokenRegex = regexp.MustCompile(`MULTI_TOKEN(\d+)=(.*)`)

func (c *config) loadFromEnvFile(log *zap.Logger) {
	envPath := filepath.Clean("fsb.env")
	log.Sugar().Infof("Trying to load ENV vars from %s", envPath)
	err := godotenv.Load(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Sugar().Info("ENV file not found, relying on process environment")
		} else {
			log.Fatal("Unknown error while parsing env file.", zap.Error(err))
		}
	}
}

func (c *config) loadMultiTokensFromEnv() {
	c.MultiTokens = MultiTokens{}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "MULTI_TOKEN") {
			continue
		}
		match := multiTokenRegex.FindStringSubmatch(env)
		if len(match) != 3 {
			continue
		}
		id, err := strconv.Atoi(match[1])
		if err != nil || id < 1 {
			continue
		}
		token := strings.TrimSpace(match[2])
		if token == "" {
			continue
		}
		c.MultiTokens[id] = token
	}
}

func (c *config) setupEnvVars(log *zap.Logger, cmd *cobra.Command) {
	c.loadFromEnvFile(log)
	err := envconfig.Process("", c)
	if err != nil {
		log.Fatal("Error while parsing env variables", zap.Error(err))
	}
	c.loadMultiTokensFromEnv()

	var ipBlocked bool
	ip, err := getIP(c.UsePublicIP)
	if err != nil {
		log.Error("Error while getting IP", zap.Error(err))
		ipBlocked = true
	}
	if c.Host == "" {
		c.Host = "http://" + ip + ":" + strconv.Itoa(c.Port)
		if c.UsePublicIP {
			if ipBlocked {
				log.Sugar().Warn("Can't get public IP, using local IP")
			} else {
				log.Sugar().Warn("Exposing a public IP directly; set HOST to a domain name for production use.")
			}
		}
		log.Sugar().Info("HOST not set, automatically set to " + c.Host)
	}
}

func Load(log *zap.Logger, cmd *cobra.Command) {
	log = log.Named("Config")
	defer log.Info("Loaded config")
	ValueOf.setupEnvVars(log, cmd)
	ValueOf.BinChannel = stripChannelID(log, ValueOf.BinChannel)
	if len(ValueOf.MultiTokens) > 0 {
		log.Sugar().Infof("%d additional worker token(s) configured", len(ValueOf.MultiTokens))
	}
	if ValueOf.StringSession != "" {
		log.Sugar().Info("STRING_SESSION configured, power session (id 99) will be started")
	}
}

func getIP(public bool) (string, error) {
	var ip string
	var err error
	if public {
		ip, err = GetPublicIP()
	} else {
		ip, err = getInternalIP()
	}
	if ip == "" {
		ip = "localhost"
	}
	if err != nil {
		return "localhost", err
	}
	return ip, nil
}

// https://stackoverflow.com/a/23558495/15807350
func getInternalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.New("no internet connection")
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func GetPublicIP() (string, error) {
	resp, err := http.Get("https://api.ipify.org?format=text")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	ip, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(ip), nil
}

// stripChannelID normalizes a channel ID that may have been supplied in the
// BotAPI "-100xxxxxxxxxx" form into the raw form gotd's ChannelsGetChannels
// expects.
func stripChannelID(log *zap.Logger, a int64) int64 {
	neg := a < 0
	if neg {
		a = -a
	}
	strA := strconv.FormatInt(a, 10)
	lastDigits := strings.TrimPrefix(strA, "100")
	result, err := strconv.ParseInt(lastDigits, 10, 64)
	if err != nil {
		log.Sugar().Fatalln(err)
		return 0
	}
	return result
}
