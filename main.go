package main

import "github.com/trafficgate/postback-gateway/cmd"

func main() {
	cmd.Execute()
}
