package main

import "github.com/harborlight-org/tokend/cmd"

func main() {
	cmd.Execute()
}
