/*
Package crypto provides the basis for secure communication between replica nodes. Other than
making a proper mutually authenticating TLS configuration for the sync layer available, it also
provides a script to set up the needed internal PKI so that replicas can verify each other.
*/
package crypto
