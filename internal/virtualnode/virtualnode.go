// Package virtualnode implements the Virtual Node Provider: attributes
// and contents for synthetic paths ("/", "/dev", "/dev/cpu") that never
// touch any layer.
package virtualnode

import (
	"fmt"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Kind distinguishes the synthetic nodes this provider knows about.
type Kind int

const (
	// NotVirtual means the path is not one of the synthetic nodes.
	NotVirtual Kind = iota
	Root
	Dev
	DevCPU
)

// Classify reports which synthetic node (if any) a virtual path names.
func Classify(p string) Kind {
	switch p {
	case "/":
		return Root
	case "/dev":
		return Dev
	case "/dev/cpu":
		return DevCPU
	default:
		return NotVirtual
	}
}

var (
	brandOnce sync.Once
	brand     string
)

// cpuBrand returns the host CPU brand string, using klauspost/cpuid/v2 as
// a portable replacement for the original program's Darwin-only
// sysctlbyname("machdep.cpu.brand_string", ...) call.
func cpuBrand() string {
	brandOnce.Do(func() {
		brand = cpuid.CPU.BrandName
		if brand == "" {
			brand = "unknown"
		}
	})
	return brand
}

// CPUContent renders the full contents of /dev/cpu: "CPU Brand: <brand>\n".
func CPUContent() []byte {
	return []byte(fmt.Sprintf("CPU Brand: %s\n", cpuBrand()))
}

// Entries lists the synthetic children of a synthetic directory: "/"
// yields "dev", "/dev" yields "cpu".
func Entries(k Kind) []string {
	switch k {
	case Root:
		return []string{"dev"}
	case Dev:
		return []string{"cpu"}
	default:
		return nil
	}
}
