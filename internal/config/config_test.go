package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func defaults() *Config {
	return &Config{
		DatabasePath:      "./data/feedmixer.db",
		HTTPPort:          8080,
		LogLevel:          "info",
		LogFormat:         "text",
		Environment:       "dev",
		AppName:           "feedmixer",
		AppVersion:        "0.1.0",
		CORSOrigin:        "*",
		RateLimitRequests: 100,
		RateLimitWindow:   60 * time.Second,
		RateLimitExclude:  []string{"/health"},
		FeedMaxAgeMinutes: 60,
		SchedulerTick:     time.Minute,
		ConditionLogic:    "all",
	}
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(c *Config)
		wantErr string
	}{
		{
			name: "defaults applied",
			env:  map[string]string{},
			want: func(*Config) {},
		},
		{
			name: "all values set",
			env: map[string]string{
				"DATABASE_PATH":        "/tmp/mix.db",
				"HTTP_PORT":            "9090",
				"LOG_LEVEL":            "debug",
				"LOG_FORMAT":           "json",
				"ENVIRONMENT":          "prod",
				"RATE_LIMIT_REQUESTS":  "5",
				"RATE_LIMIT_WINDOW":    "10s",
				"RATE_LIMIT_EXCLUDE":   "/health,/metrics",
				"FEED_MAX_AGE_MINUTES": "15",
				"SCHEDULER_TICK":       "30s",
				"CONDITION_LOGIC":      "chain",
				"TELEGRAM_BOT_TOKEN":   "tok",
				"ALLOWED_USERS":        "111,222,333",
			},
			want: func(c *Config) {
				c.DatabasePath = "/tmp/mix.db"
				c.HTTPPort = 9090
				c.LogLevel = "debug"
				c.LogFormat = "json"
				c.Environment = "prod"
				c.RateLimitRequests = 5
				c.RateLimitWindow = 10 * time.Second
				c.RateLimitExclude = []string{"/health", "/metrics"}
				c.FeedMaxAgeMinutes = 15
				c.SchedulerTick = 30 * time.Second
				c.ConditionLogic = "chain"
				c.TelegramBotToken = "tok"
				c.AllowedUsers = UserIDs{111, 222, 333}
			},
		},
		{
			name: "allowed users with spaces",
			env:  map[string]string{"ALLOWED_USERS": " 10 , 20 , "},
			want: func(c *Config) {
				c.AllowedUsers = UserIDs{10, 20}
			},
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"ALLOWED_USERS": "123,abc"},
			wantErr: "ALLOWED_USERS",
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"LOG_FORMAT": "xml"},
			wantErr: "LOG_FORMAT",
		},
		{
			name:    "unknown condition logic",
			env:     map[string]string{"CONDITION_LOGIC": "any"},
			wantErr: "CONDITION_LOGIC",
		},
		{
			name:    "zero rate limit",
			env:     map[string]string{"RATE_LIMIT_REQUESTS": "0"},
			wantErr: "RATE_LIMIT_REQUESTS",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"SCHEDULER_TICK": "soon"},
			wantErr: "SCHEDULER_TICK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not name %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := defaults()
			tt.want(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("LoadFrom() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers UserIDs
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
