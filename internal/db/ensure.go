package db

import (
	"context"
	"fmt"

	"gramfuzz/internal/config"
	"gramfuzz/internal/util"
)

// EnsureDatabase creates the database if it does not exist. Only MySQL
// compatible targets have named databases.
func EnsureDatabase(ctx context.Context, driver, dsn, dbName string) error {
	if dbName == "" || driver != config.DriverMySQL {
		return nil
	}
	exec, err := Open(driver, config.AdminDSN(dsn))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(exec, "db exec")
	_, err = exec.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	return err
}
