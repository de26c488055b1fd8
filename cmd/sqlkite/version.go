package main

const CLIVersion = "v0.1.0"
