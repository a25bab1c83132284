package helpers

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mselim/campaign-gateway/internal/repository"
	"github.com/mselim/campaign-gateway/pkg/pg"
	"github.com/mselim/campaign-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.SessionEntity{},
		&repository.CampaignEntity{},
		&repository.ContactEntity{},
		&repository.CrmContactEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter := redis.NewRedisAdapterWithClient("", goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	}))

	return mr, adapter
}

func CreateTestCampaign(t *testing.T, db *pg.DB, name, template, status string) *repository.CampaignEntity {
	ctx := context.Background()
	campaign := &repository.CampaignEntity{
		Name:            name,
		MessageTemplate: template,
		Status:          status,
	}
	err := db.Write(ctx).Create(campaign).Error
	require.NoError(t, err)
	return campaign
}

func CreateTestContact(t *testing.T, db *pg.DB, campaignID int64, phone, status string) *repository.ContactEntity {
	ctx := context.Background()
	contact := &repository.ContactEntity{
		CampaignID:  campaignID,
		PhoneNumber: phone,
		Status:      status,
		Source:      "manual",
	}
	err := db.Write(ctx).Create(contact).Error
	require.NoError(t, err)
	return contact
}

func CreateTestSession(t *testing.T, db *pg.DB, scope, phone, sessionKey string) *repository.SessionEntity {
	ctx := context.Background()
	now := time.Now()
	session := &repository.SessionEntity{
		Scope:           scope,
		PhoneNumber:     phone,
		Status:          "authenticated",
		SessionKey:      sessionKey,
		AuthenticatedAt: &now,
		LastUsedAt:      now,
	}
	err := db.Write(ctx).Create(session).Error
	require.NoError(t, err)
	return session
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomPhone() string {
	return fmt.Sprintf("1415555%04d", rand.Intn(10000))
}

func Ptr[T any](v T) *T {
	return &v
}
