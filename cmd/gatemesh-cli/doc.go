// Package main provides the entry point for gatemesh-cli.
//
// gatemesh-cli is a gatemesh client on the command line. It opens a client
// session against the configured receptionists for each command:
//
//	gatemesh-cli --contact http://localhost:7400 send /user/orders '{"id":1}'
//	gatemesh-cli -c client.yaml send-all --repeat 100 /user/audit ping
//	gatemesh-cli --contact http://localhost:7400 contacts -o yaml
//	gatemesh-cli clients --watch http://localhost:7400
package main
