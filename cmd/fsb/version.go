package main

const versionString = "1.0.0"
