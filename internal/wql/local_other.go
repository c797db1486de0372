//go:build !windows

package wql

import "context"

func queryLocal(ctx context.Context, namespace, query string) ([]Row, error) {
	return nil, ErrUnsupported
}
