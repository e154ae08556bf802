package main

import (
	"github.com/naperu/wabarelay/internal/app"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Module(),
		app.WithLogger(),
	).Run()
}
