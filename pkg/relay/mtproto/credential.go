// Copyright 2024-2026 Aiku AI

package mtproto

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// EncodeCredential turns an exported session blob into the opaque
// credential string held by the relay.
func EncodeCredential(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCredential reverses EncodeCredential.
func DecodeCredential(credential string) ([]byte, error) {
	if credential == "" {
		return nil, errors.New("empty credential")
	}
	data, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return nil, fmt.Errorf("malformed credential: %w", err)
	}
	return data, nil
}
