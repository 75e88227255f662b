package main

import afsk "github.com/doismellburning/samoyed-afsk/src"

func main() {
	afsk.AtestMain()
}
