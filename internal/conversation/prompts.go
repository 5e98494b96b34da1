package conversation

import (
	"encoding/base64"
	"fmt"
)

// DefaultInstruction is the first-turn text sent alongside the image.
const DefaultInstruction = `You are an expert in data visualisation. Recreate the plot in this image.

Write a single Python program using matplotlib.pyplot imported as plt. The program
runs in a restricted Python dialect, so follow these rules:
- The only import allowed is "import matplotlib.pyplot as plt". There is no numpy.
- Use plt.linspace and plt.arange for ranges and plt.math (sin, cos, exp, log, sqrt, pi)
  for maths. Use list comprehensions instead of array arithmetic.
- No f-strings, classes, try/except, file access or show(). Use % or + to build strings.
- Supported calls: plt.figure, plt.subplots (one axes), plot, scatter, bar, hist, axhline,
  title, xlabel, ylabel, xlim, ylim, xscale, yscale, legend and grid, on plt or on the axes.

Hardcode the data you read from the image. Respond with one fenced python code block.`

// RepairPrompt builds the user text asking for a corrected version of the
// previous code.
func RepairPrompt(errorMessage string) string {
	return fmt.Sprintf("your code has an error\nerror message: %s\nplease check and fix the above code", errorMessage)
}

// DocPrompt asks the model to wrap working code in a documented function.
func DocPrompt(code string) string {
	return fmt.Sprintf(`Wrap the following plotting code into a function named generate_figure.
Expose the data and the main styling choices (colours, labels, title, figure size)
as parameters with default values taken from the code, and document each parameter.
Respond with one fenced code block.

%s`, code)
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
