// camlink is a command line client for camera push notifications.
//
// It stores the install configuration, pairs cameras and handles pushes
// and relay token rotations through a secure channel helper.
//
// Usage:
//
//	camlink [command] [flags]
//
// Commands:
//
//	configure      Store the server address and user credentials
//	pair           Pair a camera by address or by discovery
//	deregister     Remove a camera
//	discover       Browse the local network for cameras
//	push           Handle base64 push payloads
//	token          Handle a relay token rotation
//	notifications  Enable or disable motion alerts
//	status         Show install state and paired cameras
//	videos         List clips recorded for a camera
//	serve          Handle pushes from stdin and serve /metrics
//
// Settings are read from flags, CAMLINK_* environment variables, a .env
// file and an optional YAML config file.
//
// Example:
//
//	camlink --simulate pair cam1 192.168.1.20 --secret c2VjcmV0
//	echo Y2FtMV8xNzAwMDAwMDAw | camlink --simulate push
package main

func main() {
	Execute()
}
