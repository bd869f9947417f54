package main

import (
	"github.com/aretw0/warden/pkg/component"
	_ "github.com/aretw0/warden/pkg/component/builtin"
)

func main() {
	// Worker processes are this binary re-launched; they never reach Execute.
	component.Init()
	Execute()
}
