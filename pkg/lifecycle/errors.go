// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports that the caller cancelled the call before it
	// completed. It is not a failure: results are dropped on purpose.
	ErrCancelled = errors.New("request cancelled")

	// ErrUploadFailed matches every *RequestError on the upload channel.
	ErrUploadFailed = errors.New("upload failed")

	// ErrChatFailed matches every *RequestError on the chat channel.
	ErrChatFailed = errors.New("chat failed")
)

const (
	genericUploadDetail = "Upload failed. Please try again."
	genericChatDetail   = "The assistant could not respond. Please try again."
)

// RequestError is an upload or chat failure.
//
// # Description
//
// Detail is what the user sees: the backend's own explanation when it sent
// one, otherwise a generic message for the channel. Err keeps the underlying
// transport or API error for logs and errors.As.
//
// errors.Is(err, ErrUploadFailed) / errors.Is(err, ErrChatFailed) select by
// channel.
type RequestError struct {
	Channel    Channel
	StatusCode int
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Channel, e.Detail)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the channel sentinel.
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUploadFailed:
		return e.Channel == ChannelUpload
	case ErrChatFailed:
		return e.Channel == ChannelChat
	}
	return false
}

var _ error = (*RequestError)(nil)

// DetailOf returns the user-facing detail of a *RequestError in err's chain,
// or err.Error() for anything else.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Detail
	}
	return err.Error()
}
