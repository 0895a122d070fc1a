// Command chat is a terminal client for the polled document-store messenger.
package main

func main() {
	Execute()
}
