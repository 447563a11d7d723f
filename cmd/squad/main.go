// Command squad trains and evaluates a span-prediction question
// answering model on SQuAD-style data.
package main

func main() {
	Execute()
}
