package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"

	"github.com/SisyphusSQ/mongo-top-tool/pkg/log"
)

const (
	MongoUser = "MONGO_USER"
	MongoPass = "MONGO_PASS"

	DefaultAddress = "localhost:27017"
	DefaultPort    = "27017"
)

// Choices is the list of views a server can take part in
var Choices = []string{"status", "replicationInfo", "replicaSet", "operations", "replicationOperations"}

type TopConfig struct {
	Debug bool

	ConfPath string
	Interval time.Duration

	Username   string
	Password   string
	AuthSource string

	Auth string

	Servers []ServerConfig
}

// ServerConfig is one monitored server: either a section of the
// config file, or a bare address from the command line.
type ServerConfig struct {
	Name     string
	Address  string
	Username string
	Password string

	Choices map[string]bool
}

var authFmt = "%s:%s@"

func PreCheck(cfg *TopConfig, args []string) error {
	log.New(cfg.Debug)

	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.AuthSource == "" {
		cfg.AuthSource = "admin"
	}

	user := os.Getenv(MongoUser)
	pass := os.Getenv(MongoPass)

	if cfg.Username != "" && cfg.Password != "" {
		cfg.Auth = fmt.Sprintf(authFmt, cfg.Username, cfg.Password)
	} else if user != "" && pass != "" {
		cfg.Auth = fmt.Sprintf(authFmt, user, pass)
	} else {
		cfg.Auth = ""
	}

	if cfg.ConfPath != "" {
		if _, err := os.Stat(cfg.ConfPath); err == nil {
			servers, err := loadSections(cfg.ConfPath)
			if err != nil {
				return err
			}
			cfg.Servers = servers
			return nil
		}
	}

	// no config file, fall back to addresses with every view enabled
	addrs := args
	if len(addrs) == 0 {
		addrs = []string{DefaultAddress}
	}
	for _, addr := range addrs {
		cfg.Servers = append(cfg.Servers, ServerConfig{
			Name:    addr,
			Address: normalizeAddr(addr),
			Choices: allChoices(),
		})
	}
	return nil
}

func loadSections(path string) ([]ServerConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config file '%s' failed: %v", path, err)
	}

	var servers []ServerConfig
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		s := ServerConfig{
			Name:     sec.Name(),
			Address:  sec.Key("address").MustString(sec.Name()),
			Username: sec.Key("username").String(),
			Password: sec.Key("password").String(),
			Choices:  make(map[string]bool, len(Choices)),
		}
		s.Address = normalizeAddr(s.Address)
		for _, choice := range Choices {
			s.Choices[choice] = sec.Key(choice).MustBool(true)
		}
		servers = append(servers, s)
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("config file '%s' has no server sections", path)
	}
	return servers, nil
}

// ConcatUri builds the per-server connect URI. Section credentials
// win over the global ones.
func (c *TopConfig) ConcatUri(s ServerConfig) string {
	auth := c.Auth
	if s.Username != "" && s.Password != "" {
		auth = fmt.Sprintf(authFmt, s.Username, s.Password)
	}
	return fmt.Sprintf("mongodb://%s%s/%s", auth, s.Address, c.AuthSource)
}

func normalizeAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return addr + ":" + DefaultPort
	}
	return addr
}

func allChoices() map[string]bool {
	m := make(map[string]bool, len(Choices))
	for _, choice := range Choices {
		m[choice] = true
	}
	return m
}
