//go:build !linux

package dataplane

import "fmt"

func (m *DataPlane) importKernelRoutes() error {
	return fmt.Errorf("kernel route import is only supported on linux")
}
