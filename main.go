package main

import mongorsop "mongorsop/cmd/mongorsop"

func main() {
	mongorsop.Execute()
}
