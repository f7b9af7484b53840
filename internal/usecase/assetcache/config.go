package assetcache

import (
	"errors"
	"net/url"
	"strings"
)

// Defaults for the versioned asset store
const (
	DefaultPrefix       = "gstk-cache-"
	DefaultVersion      = "v1"
	DefaultRootDocument = "/index.html"
)

// DefaultManifest lists the core assets fetched at install.
// Changing it requires bumping the version.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/styles.css",
	"/script.js",
	"/manifest.webmanifest",
	"/icons/icon-192.png",
	"/icons/icon-512.png",
}

// Config is injected at startup and never changes for the life of an Interceptor
type Config struct {
	Prefix       string
	Version      string
	Manifest     []string
	RootDocument string
	Origin       *url.URL
}

// StoreName is the name of the store owned by this version
func (c Config) StoreName() string {
	return c.Prefix + c.Version
}

// Validate ensures the configuration can drive an interceptor
func (c Config) Validate() error {
	if c.Prefix == "" {
		return errors.New("cache prefix cannot be empty")
	}
	if strings.TrimSpace(c.Version) == "" {
		return errors.New("cache version cannot be empty")
	}
	if c.Origin == nil || !c.Origin.IsAbs() || c.Origin.Host == "" {
		return errors.New("origin must be an absolute URL")
	}
	if c.RootDocument == "" {
		return errors.New("root document cannot be empty")
	}
	return nil
}

// ParseOrigin parses and normalises an origin URL, dropping any path
func ParseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.New("origin must be an absolute URL")
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
