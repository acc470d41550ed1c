package main

import (
	"errors"
	"fmt"
	"math"
)

const mib = 1024 * 1024

type Service struct {
	Name       string   `yaml:"name"`
	Endpoints  []string `yaml:"endpoints"`
	BaseMemory int64    `yaml:"base_memory"`
}

type Region struct {
	Name string `yaml:"name"`
	// Weight is the relative share of requests served from this region.
	Weight int `yaml:"weight"`
	// UserShare is the fraction of active users in this region; all shares sum to 1.
	UserShare float64 `yaml:"user_share"`
}

// Catalog is the static description of the simulated application. The
// defaults describe a small web shop; a config file can replace it under the
// "catalog" key.
type Catalog struct {
	Services        []Service `yaml:"services"`
	FrontendService string    `yaml:"frontend_service"`
	FastEndpoints   []string  `yaml:"fast_endpoints"`
	Regions         []Region  `yaml:"regions"`
	UserAgents      []string  `yaml:"user_agents"`
	Tables          []string  `yaml:"tables"`

	// base volumes per simulated step, before the traffic multiplier
	RequestRate int `yaml:"request_rate"`
	QueryRate   int `yaml:"query_rate"`
	ActiveUsers int `yaml:"active_users"`
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		Services: []Service{
			{Name: "web-frontend", Endpoints: []string{"/", "/login", "/signup", "/dashboard", "/profile", "/search"}, BaseMemory: 512 * mib},
			{Name: "api-gateway", Endpoints: []string{"/api/v1/health", "/api/v1/auth", "/api/v1/users", "/api/v1/orders"}, BaseMemory: 256 * mib},
			{Name: "user-service", Endpoints: []string{"/users", "/users/profile", "/users/preferences", "/auth/login"}, BaseMemory: 384 * mib},
			{Name: "order-service", Endpoints: []string{"/orders", "/orders/history", "/orders/create", "/orders/cancel"}, BaseMemory: 512 * mib},
			{Name: "payment-service", Endpoints: []string{"/payments", "/payments/process", "/payments/refund"}, BaseMemory: 256 * mib},
		},
		FrontendService: "web-frontend",
		FastEndpoints:   []string{"/", "/health"},
		Regions: []Region{
			{Name: "us-east-1", Weight: 40, UserShare: 0.4},
			{Name: "us-west-2", Weight: 30, UserShare: 0.3},
			{Name: "ca-central-1", Weight: 20, UserShare: 0.2},
			{Name: "sa-east-1", Weight: 10, UserShare: 0.1},
		},
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15",
			"Mozilla/5.0 (Android 11; Mobile; rv:91.0) Gecko/91.0 Firefox/91.0",
		},
		Tables:      []string{"users", "orders", "products", "sessions", "analytics"},
		RequestRate: 1000,
		QueryRate:   500,
		ActiveUsers: 5000,
	}
}

// Validate reports the first problem that would make the catalog unusable.
func (c *Catalog) Validate() error {
	if len(c.Services) == 0 {
		return errors.New("catalog has no services")
	}
	frontend := false
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" {
			return errors.New("catalog has a service without a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("service %s is listed twice", s.Name)
		}
		seen[s.Name] = true
		if len(s.Endpoints) == 0 {
			return fmt.Errorf("service %s has no endpoints", s.Name)
		}
		if s.BaseMemory <= 0 {
			return fmt.Errorf("service %s needs a positive base_memory", s.Name)
		}
		if s.Name == c.FrontendService {
			frontend = true
		}
	}
	if !frontend {
		return fmt.Errorf("frontend service %q is not in the service list", c.FrontendService)
	}
	if len(c.backendServices()) == 0 {
		return errors.New("catalog needs at least one service besides the frontend")
	}
	if len(c.Regions) == 0 {
		return errors.New("catalog has no regions")
	}
	var shares float64
	for _, r := range c.Regions {
		if r.Weight <= 0 {
			return fmt.Errorf("region %s needs a positive weight", r.Name)
		}
		if r.UserShare < 0 {
			return fmt.Errorf("region %s has a negative user_share", r.Name)
		}
		shares += r.UserShare
	}
	if math.Abs(shares-1) > 1e-6 {
		return fmt.Errorf("region user shares sum to %g, not 1", shares)
	}
	if len(c.UserAgents) == 0 {
		return errors.New("catalog has no user agents")
	}
	if len(c.Tables) == 0 {
		return errors.New("catalog has no tables")
	}
	if c.RequestRate <= 0 || c.QueryRate <= 0 || c.ActiveUsers <= 0 {
		return errors.New("request_rate, query_rate and active_users must be positive")
	}
	return nil
}

func (c *Catalog) backendServices() []string {
	names := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Name != c.FrontendService {
			names = append(names, s.Name)
		}
	}
	return names
}
