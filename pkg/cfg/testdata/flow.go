package flow

import "errors"

type Counter struct {
	n int
}

func straight(a, b int) int {
	c := a + b
	c *= 2
	return c
}

func branch(x int) int {
	y := 0
	if x > 0 {
		y = x
	} else {
		y = -x
	}
	return y
}

func elseIf(x int) string {
	if x < 0 {
		return "negative"
	} else if x == 0 {
		return "zero"
	}
	return "positive"
}

func sum(xs []int) int {
	total := 0
	for i := 0; i < len(xs); i++ {
		total += xs[i]
	}
	return total
}

func find(xs []int, want int) (int, error) {
	for i, x := range xs {
		if x == want {
			return i, nil
		}
	}
	return -1, errors.New("not found")
}

func spin(ch chan int) {
	for {
		v := <-ch
		if v < 0 {
			break
		}
		process(v)
	}
	done()
}

func classify(x int) string {
	s := ""
	switch x {
	case 1:
		s = "one"
	case 2, 3:
		s = "few"
	default:
		s = "many"
	}
	return s
}

func kind(v interface{}) string {
	switch v.(type) {
	case int:
		return "int"
	case string:
		return "string"
	}
	return "other"
}

func jump(x int) {
	if x > 0 {
		goto end
	}
	process(x)
end:
	done()
}

func (c *Counter) Inc() {
	c.n++
}

func process(int) {}

func done() {}
