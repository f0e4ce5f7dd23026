package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	db, err := Connect(DriverSQLite, "file:database_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.True(t, db.Migrator().HasTable(&models.FeedbackSubmission{}))
	require.True(t, db.Migrator().HasTable(&models.FeedbackPointRecord{}))
	require.True(t, db.Migrator().HasTable(&models.ConversationTurn{}))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "dsn")
	require.ErrorContains(t, err, "unsupported database driver")

	_, err = Connect(DriverPostgres, "")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())

	client, err = ConnectRedis(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, client)

	_, err = ConnectRedis(context.Background(), "not a url")
	require.Error(t, err)
}

func TestConnectNATSDisabledWithoutURL(t *testing.T) {
	conn, err := ConnectNATS("", "coach")
	require.NoError(t, err)
	require.Nil(t, conn)
}
