// The main package for the streamprice executable.
package main

import (
	"github.com/JakeFAU/streamprice-crawler/cmd"
)

func main() {
	cmd.Execute()
}
