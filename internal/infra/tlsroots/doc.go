// Package tlsroots manages the TLS material of receptionist RPC endpoints.
//
// Pool holds the CA certificates clients and forwarding receptionists trust
// in addition to (or instead of) the system roots. CertReloader serves a
// receptionist certificate and key pair and reloads them with fsnotify when
// the files are replaced, so certificates rotate without a restart.
package tlsroots
