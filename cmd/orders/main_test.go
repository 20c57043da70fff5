package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"gitlab.ozon.dev/qwestard/orders/internal/client"
)

func TestErrorMessage(t *testing.T) {
	cerr := &client.ClientError{Code: codes.InvalidArgument, Details: "client_id is empty"}

	assert.Equal(t, "error: InvalidArgument: client_id is empty", errorMessage(cerr))
	assert.Equal(t, "error: InvalidArgument: client_id is empty", errorMessage(fmt.Errorf("start order: %w", cerr)))
	assert.Equal(t, "Error: KAFKA_BROKERS is not set", errorMessage(errors.New("KAFKA_BROKERS is not set")))
}
