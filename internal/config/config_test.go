package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "unit", cfg.Env)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "school-images", cfg.Storage.Bucket)
		assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL())
		assert.Equal(t, time.Minute, cfg.Auth.ResendCooldown())
		assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL())
		assert.Equal(t, 5, cfg.Auth.OTPMaxAttempts)
		assert.Equal(t, "log", cfg.Mail.Driver)
		assert.Equal(t, "none", cfg.Events.Driver)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("DB_USER", "directory")
		t.Setenv("S3_ACCESS_KEY", "access")
		t.Setenv("AUTH_OTP_TTL_MINUTES", "5")
		t.Setenv("SERVER_PORT", "9090")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "directory", cfg.Database.User)
		assert.Equal(t, "access", cfg.Storage.AccessKey)
		assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL())
		assert.Equal(t, "9090", cfg.Server.Port)
	})

	t.Run("MissingJWTSecret", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		assert.ErrorContains(t, err, "jwt_secret")
	})

	t.Run("UnknownMailDriver", func(t *testing.T) {
		t.Setenv("ENV", "unit")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("MAIL_DRIVER", "pigeon")

		_, err := Load()
		assert.ErrorContains(t, err, "mail driver")
	})
}
