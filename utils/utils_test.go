package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rodeway/board/config"
)

func TestMain(m *testing.M) {
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
	SetRedis(nil)
	m.Run()
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	digest, err := h.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", digest)
	assert.True(t, h.Verify("pw1", digest))
	assert.False(t, h.Verify("pw2", digest))

	again, err := h.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "bcrypt digests are salted")
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(7, "alice", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	expired, err := GenerateToken(1, "bob", "user", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestBlacklistInMemory(t *testing.T) {
	assert.False(t, IsTokenBlacklisted("jti-1"))
	BlacklistToken("jti-1", time.Now().Add(time.Minute))
	assert.True(t, IsTokenBlacklisted("jti-1"))

	BlacklistToken("jti-2", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenBlacklisted("jti-2"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hi", SanitizePlain("  <b>hi</b> "))
	assert.NotContains(t, Sanitize(`<script>alert(1)</script><p>ok</p>`), "script")

	stored := SanitizePlain("Tom & Jerry")
	assert.Contains(t, stored, SearchTerm("Tom & Jerry"))
	assert.Contains(t, stored, SearchTerm(" & "))
}

func TestNormalizeAvatar(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := NormalizeAvatar(bytes.NewReader(buf.Bytes()), 1<<20)
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, decoded.Bounds().Dx())
	assert.Equal(t, AvatarSize, decoded.Bounds().Dy())

	_, err = NormalizeAvatar(bytes.NewReader(buf.Bytes()), 10)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
