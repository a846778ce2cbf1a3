package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "kura"}

	root.AddCommand(serveCMD(), migrateCMD(), queryCMD(), tokenCMD())
	_ = root.Execute()
}
