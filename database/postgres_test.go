package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: "5432", User: "hub", Password: "pw",
		DBName: "organic", SSLMode: "disable", TimeZone: "Asia/Kolkata",
	}
	assert.Equal(t,
		"host=db user=hub password=pw dbname=organic port=5432 sslmode=disable TimeZone=Asia/Kolkata",
		cfg.DSN())
}
