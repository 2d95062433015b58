// The main package for the blogsearch executable.
package main

import "github.com/JakeFAU/blog-search/cmd"

func main() {
	cmd.Execute()
}
