/*
Package evaluation provides facilities to load test a remote replica setup. Tests are thought to be
executed from a reproducible host, e.g. a common machine option at some prominent cloud provider,
against one replica's sync endpoint while the full peer set replicates in the background.
*/
package main
